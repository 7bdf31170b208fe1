package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/simplechat/convmeta/plugin/metadata"
)

// placeholder returns a numbered placeholder for PostgreSQL ($1, $2, ...)
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders for PostgreSQL
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

func marshalMetadata(doc *metadata.Document) (string, error) {
	if doc == nil {
		doc = metadata.NewDocument()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal metadata document")
	}
	return string(data), nil
}

func unmarshalMetadata(raw string) (*metadata.Document, error) {
	if raw == "" {
		return metadata.NewDocument(), nil
	}
	doc := metadata.NewDocument()
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata document")
	}
	return doc, nil
}
