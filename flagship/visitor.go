package flagship

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goflagship-sdk/internal/store"
)

type visitorDoc struct {
	ID string `json:"visitorId"`
}

func emptyVisitor() visitorDoc { return visitorDoc{} }

// loadVisitorID returns the persisted visitor id, creating one on first use.
func loadVisitorID(storeType string, fs afero.Fs, path string, opts []store.Option) (string, error) {
	st, err := store.New(storeType, fs, path, emptyVisitor, opts...)
	if err != nil {
		return "", err
	}
	doc := st.Read()
	if doc.ID != "" {
		return doc.ID, nil
	}
	doc.ID = uuid.NewString()
	if err := st.Store(doc); err != nil {
		return "", fmt.Errorf("persist visitor id: %w", err)
	}
	return doc.ID, nil
}
