package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aluiziolira/scan-catalog/models"
)

const exportIndent = "    "

// ExportError reports a filesystem failure while exporting or loading a catalog.
type ExportError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// ExportFilename appends ".json" to names that contain no dot.
func ExportFilename(filename string) string {
	if !strings.Contains(filename, ".") {
		return filename + ".json"
	}
	return filename
}

// EncodeCatalog renders c as a JSON object keyed by category, indented with
// four spaces.
func EncodeCatalog(c *models.Catalog) ([]byte, error) {
	compact, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", exportIndent); err != nil {
		return nil, fmt.Errorf("indent catalog: %w", err)
	}
	return out.Bytes(), nil
}

// WriteCatalogJSON exports c to filename and returns the path written.
func WriteCatalogJSON(filename string, c *models.Catalog) (string, error) {
	path := ExportFilename(filename)
	data, err := EncodeCatalog(c)
	if err != nil {
		return "", err
	}
	if err := ensureDir(path); err != nil {
		return "", &ExportError{Op: "create directory for", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &ExportError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// ReadCatalogJSON loads a catalog previously written by WriteCatalogJSON.
func ReadCatalogJSON(filename string) (*models.Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ExportError{Op: "read", Path: filename, Err: err}
	}
	c := models.NewCatalog()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", filename, err)
	}
	return c, nil
}
