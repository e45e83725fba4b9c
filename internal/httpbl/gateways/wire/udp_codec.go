// Package wire provides encoding and decoding of DNS messages for UDP transport.
// It handles the subset of the RFC 1035 wire format needed to ask a single
// A question and read the answer.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/httpbl/internal/httpbl/common/log"
	"github.com/haukened/httpbl/internal/httpbl/domain"
)

const (
	headerLen = 12
	maxLabel  = 63
	maxName   = 255
	// bound on compression pointer hops while decoding a single name
	maxPointers = 16
)

// udpCodec implements the Codec interface for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates and returns a new instance of udpCodec using the provided logger.
func NewUDPCodec(logger log.Logger) *udpCodec {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &udpCodec{
		logger: logger,
	}
}

// EncodeQuery serializes a Question into a binary format suitable for sending via UDP.
func (c *udpCodec) EncodeQuery(query domain.Question) ([]byte, error) {
	var buf bytes.Buffer

	// Header
	_ = binary.Write(&buf, binary.BigEndian, query.ID)       // ID
	_ = binary.Write(&buf, binary.BigEndian, uint16(0x0100)) // Flags: standard query, RD=1
	_ = binary.Write(&buf, binary.BigEndian, uint16(1))      // QDCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // ANCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // NSCOUNT
	_ = binary.Write(&buf, binary.BigEndian, uint16(0))      // ARCOUNT

	name, err := encodeDomainName(query.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	_ = binary.Write(&buf, binary.BigEndian, uint16(query.Type))
	_ = binary.Write(&buf, binary.BigEndian, uint16(query.Class))

	c.logger.Debug(map[string]any{
		"id":   query.ID,
		"name": query.Name,
		"size": buf.Len(),
	}, "Encoded DNS query")

	return buf.Bytes(), nil
}

// encodeDomainName encodes a domain name into DNS wire format without compression.
// Empty labels are skipped so that a trailing dot is tolerated.
func encodeDomainName(name string) ([]byte, error) {
	var buf bytes.Buffer
	name = strings.TrimSuffix(name, ".")
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if len(label) > maxLabel {
				return nil, fmt.Errorf("label too long: %s", label)
			}
			if len(label) == 0 {
				continue
			}
			buf.WriteByte(byte(len(label)))
			buf.WriteString(label)
		}
	}
	buf.WriteByte(0)
	if buf.Len() > maxName {
		return nil, fmt.Errorf("name too long: %d bytes", buf.Len())
	}
	return buf.Bytes(), nil
}

// decodeName decodes a domain name from a DNS message at the specified offset,
// handling label compression as defined in RFC 1035. The returned offset points
// just past the name as it appears at the original position.
func decodeName(data []byte, offset int) (string, int, error) {
	var labels []string
	next := -1
	hops := 0
	for {
		if offset >= len(data) {
			return "", 0, errors.New("offset out of bounds")
		}
		length := int(data[offset])
		if length == 0 {
			offset++
			break
		}
		if length&0xC0 == 0xC0 {
			if offset+1 >= len(data) {
				return "", 0, errors.New("compression pointer out of bounds")
			}
			hops++
			if hops > maxPointers {
				return "", 0, errors.New("too many compression pointers")
			}
			if next < 0 {
				next = offset + 2
			}
			offset = int(binary.BigEndian.Uint16(data[offset:offset+2]) & 0x3FFF)
			continue
		}
		offset++
		if offset+length > len(data) {
			return "", 0, errors.New("label length out of bounds")
		}
		labels = append(labels, string(data[offset:offset+length]))
		offset += length
	}
	if next < 0 {
		next = offset
	}
	return strings.Join(labels, "."), next, nil
}

// DecodeResponse parses a raw DNS response from a UDP packet into a DNSResponse,
// validating the response ID and extracting resource records.
func (c *udpCodec) DecodeResponse(data []byte, expectedID uint16) (domain.DNSResponse, error) {
	if len(data) < headerLen {
		return domain.DNSResponse{}, errors.New("response too short")
	}
	id := binary.BigEndian.Uint16(data[0:2])
	if id != expectedID {
		return domain.DNSResponse{}, fmt.Errorf("ID mismatch: expected %d, got %d", expectedID, id)
	}

	flags := binary.BigEndian.Uint16(data[2:4])
	if flags&0x8000 == 0 {
		return domain.DNSResponse{}, errors.New("message is not a response")
	}
	if flags&0x0200 != 0 {
		return domain.DNSResponse{}, errors.New("response truncated")
	}
	//gosec:disable G115 -- uint16 & 0x000F always results in a uint8 value, so this is safe.
	rcode := domain.RCode(uint8(flags & 0x000F))

	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])
	nsCount := binary.BigEndian.Uint16(data[8:10])
	arCount := binary.BigEndian.Uint16(data[10:12])

	offset := headerLen
	// Skip questions
	for i := 0; i < int(qdCount); i++ {
		_, next, err := decodeName(data, offset)
		if err != nil {
			return domain.DNSResponse{}, fmt.Errorf("truncated question name: %w", err)
		}
		offset = next + 4 // QTYPE + QCLASS
		if offset > len(data) {
			return domain.DNSResponse{}, errors.New("truncated question section")
		}
	}

	sections := []struct {
		name  string
		count uint16
		out   *[]domain.ResourceRecord
	}{
		{"answer", anCount, new([]domain.ResourceRecord)},
		{"authority", nsCount, new([]domain.ResourceRecord)},
		{"additional", arCount, new([]domain.ResourceRecord)},
	}
	for _, s := range sections {
		for i := 0; i < int(s.count); i++ {
			rr, next, err := c.parseResourceRecord(data, offset)
			if err != nil {
				return domain.DNSResponse{}, fmt.Errorf("failed to parse %s record %d: %w", s.name, i, err)
			}
			*s.out = append(*s.out, rr)
			offset = next
		}
	}

	c.logger.Debug(map[string]any{
		"id":      id,
		"rcode":   rcode.String(),
		"answers": anCount,
	}, "Decoded DNS response")

	return domain.DNSResponse{
		ID:         id,
		RCode:      rcode,
		Answers:    *sections[0].out,
		Authority:  *sections[1].out,
		Additional: *sections[2].out,
	}, nil
}

// parseResourceRecord extracts a single resource record from DNS response data
func (c *udpCodec) parseResourceRecord(data []byte, offset int) (domain.ResourceRecord, int, error) {
	name, offset, err := decodeName(data, offset)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("failed to decode record name: %w", err)
	}

	if offset+10 > len(data) {
		return domain.ResourceRecord{}, 0, errors.New("truncated record section after name")
	}

	typ := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	class := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	ttl := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	rdLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	if offset+int(rdLen) > len(data) {
		return domain.ResourceRecord{}, 0, errors.New("truncated rdata")
	}
	rdata := make([]byte, rdLen)
	copy(rdata, data[offset:offset+int(rdLen)])
	offset += int(rdLen)

	return domain.ResourceRecord{
		Name:  name,
		Type:  domain.RRType(typ),
		Class: domain.RRClass(class),
		TTL:   ttl,
		Data:  rdata,
	}, offset, nil
}

var _ Codec = &udpCodec{}
