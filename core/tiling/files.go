package tiling

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/skyplan/core/sky"
)

// ReadTessellation parses whitespace separated "id ra dec" rows. Blank lines
// and lines starting with '#' are skipped.
func ReadTessellation(r io.Reader) ([]sky.Pointing, error) {
	var out []sky.Pointing
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], "#") {
			continue
		}
		if len(f) < 3 {
			return nil, fmt.Errorf("tessellation line %d: want id ra dec", line)
		}
		ra, err1 := strconv.ParseFloat(f[1], 64)
		dec, err2 := strconv.ParseFloat(f[2], 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("tessellation line %d: %w", line, err)
		}
		if dec < -90 || dec > 90 {
			return nil, fmt.Errorf("tessellation line %d: dec %v out of range", line, dec)
		}
		out = append(out, sky.Pointing{ID: f[0], RA: sky.NormRA(ra), Dec: dec})
	}
	return out, sc.Err()
}

// LoadTessellation reads a tessellation file.
func LoadTessellation(path string) ([]sky.Pointing, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadTessellation(fh)
}

// ReadCatalog parses a CSV with a header naming at least the id, ra, dec and
// grade columns.
func ReadCatalog(r io.Reader) ([]Source, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "ra", "dec", "grade"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("catalog: missing column %q", k)
		}
	}
	var out []Source
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var s Source
		s.ID = rec[col["id"]]
		vals := []*float64{&s.RA, &s.Dec, &s.Grade}
		for i, k := range []string{"ra", "dec", "grade"} {
			v, err := strconv.ParseFloat(rec[col[k]], 64)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %s: %w", s.ID, k, err)
			}
			*vals[i] = v
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadCatalog reads a catalog CSV file.
func LoadCatalog(path string) ([]Source, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadCatalog(fh)
}
