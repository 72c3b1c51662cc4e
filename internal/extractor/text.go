package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"distill/internal/domain"
)

// Text wraps raw text. The handle is the text itself and is stored as a
// short content hash.
type Text struct{}

func (Text) Extract(_ context.Context, handle string) (*domain.Document, error) {
	sum := sha256.Sum256([]byte(handle))

	return domain.NewDocument(domain.SourceText, "text-"+hex.EncodeToString(sum[:6]), handle,
		map[string]string{
			"length": strconv.Itoa(len(handle)),
		}), nil
}
