package wire

import (
	"github.com/haukened/httpbl/internal/httpbl/domain"
)

// Codec encodes outgoing queries and decodes upstream responses.
type Codec interface {
	EncodeQuery(query domain.Question) ([]byte, error)
	DecodeResponse(data []byte, expectedID uint16) (domain.DNSResponse, error)
}
