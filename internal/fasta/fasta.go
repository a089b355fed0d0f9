// Package fasta reads sequence and model consensus files.
package fasta

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Record is one named sequence, upper cased.
type Record struct {
	Name string
	Seq  string
}

// Read reads every record in r, in order. Names must be unique.
func Read(r io.Reader) (records []Record, err error) {
	reader := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
	seen := make(map[string]bool)
	for {
		s, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read FASTA: %v", err)
		}

		l := s.(*linear.Seq)
		if seen[l.Name()] {
			return nil, fmt.Errorf("duplicate FASTA record %s", l.Name())
		}
		seen[l.Name()] = true

		b := make([]byte, len(l.Seq))
		for i, v := range l.Seq {
			b[i] = byte(v)
		}
		records = append(records, Record{Name: l.Name(), Seq: strings.ToUpper(string(b))})
	}
	return records, nil
}

// ReadFile reads the FASTA file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA file %s: %v", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Write writes records wrapped at width residues per line.
func Write(w io.Writer, records []Record, width int) error {
	fw := fasta.NewWriter(w, width)
	for _, r := range records {
		s := linear.NewSeq(r.Name, alphabet.BytesToLetters([]byte(r.Seq)), alphabet.DNA)
		if _, err := fw.Write(s); err != nil {
			return fmt.Errorf("failed to write FASTA record %s: %v", r.Name, err)
		}
	}
	return nil
}

// Index maps record names to sequences.
func Index(records []Record) map[string]string {
	idx := make(map[string]string, len(records))
	for _, r := range records {
		idx[r.Name] = r.Seq
	}
	return idx
}
