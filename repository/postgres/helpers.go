package postgres

import (
	"encoding/json"
	"time"

	"github.com/fastygo/taskdesk/domain"
)

func marshalDocuments(docs []domain.Attachment) []byte {
	if len(docs) == 0 {
		return []byte("[]")
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func unmarshalDocuments(raw []byte) ([]domain.Attachment, error) {
	docs := []domain.Attachment{}
	if len(raw) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Attachment{}
	}
	return docs, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
