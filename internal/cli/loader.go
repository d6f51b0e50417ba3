package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dsquery/internal/compiler"
)

// LoadResult contains a compiled document and where it came from.
type LoadResult struct {
	Document  *compiler.Document
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during document loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDocuments compiles every path into one document. A file is compiled
// on its own; a directory is loaded as a single CUE package, so its files
// unify before compilation.
func LoadDocuments(paths ...string) (*LoadResult, error) {
	result := &LoadResult{Document: &compiler.Document{}}
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
		}

		var doc *compiler.Document
		if info.IsDir() {
			doc, err = loadDirectory(path, result)
		} else {
			doc, err = compiler.LoadFile(path)
			result.FileCount++
		}
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		result.Document.Merge(doc)
	}
	return result, nil
}

func loadDirectory(dir string, result *LoadResult) (*compiler.Document, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	result.FileCount += len(cueFiles)

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return compiler.CompileDocument(value)
}

// FindCUEFiles returns the .cue files directly inside dir. Subdirectories
// are separate packages and are not loaded.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeStore       = "E007" // Store open or write failed

	// Document compilation errors
	ErrCodeEntity = "E010" // Malformed entity
	ErrCodeQuery  = "E011" // Malformed query declaration
	ErrCodeIndex  = "E012" // Malformed index declaration

	// Query errors
	ErrCodeQueryText  = "E020" // Query text does not parse
	ErrCodeQueryShape = "E021" // Query shape rejected by the planner
	ErrCodeExecution  = "E022" // Query failed while running
)

// MapFieldToErrorCode maps a compiler error field to an error code by the
// document section it names.
func MapFieldToErrorCode(field string) string {
	switch section(field) {
	case "entities":
		return ErrCodeEntity
	case "queries":
		return ErrCodeQuery
	case "indexes":
		return ErrCodeIndex
	default:
		return ErrCodeGeneric
	}
}

// section returns the leading field name of a path like entities[2].key.
func section(field string) string {
	for i, r := range field {
		if r == '.' || r == '[' {
			return field[:i]
		}
	}
	return field
}
