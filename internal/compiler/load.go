package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadFile reads and compiles a single CUE document file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileDocument(v)
}

// LoadFiles compiles each file and merges them in order.
func LoadFiles(paths ...string) (*Document, error) {
	doc := &Document{}
	for _, path := range paths {
		d, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		doc.Merge(d)
	}
	return doc, nil
}
