package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Storage keys.
const (
	unitKeyPrefix   = "unit:"
	sessionStateKey = "session_state"
)

// recordVersion is the version of the unit record layout.
const recordVersion = 1

// compressedMagic prefixes zstd-compressed records.
var compressedMagic = []byte("HMZ1")

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// unitRecord is the self-describing on-disk form of a PersistentUnit.
type unitRecord struct {
	Version        int                `json:"v"`
	ID             string             `json:"id"`
	Content        string             `json:"content"`
	Vector         []float64          `json:"vector"`
	BaseImportance float64            `json:"base_importance"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccess     time.Time          `json:"last_access"`
	AccessCount    int                `json:"access_count"`
	AccessRate     float64            `json:"access_rate"`
	AccessLast     time.Time          `json:"access_last"`
	Tier           Tier               `json:"storage_tier"`
	Relationships  map[string]float64 `json:"relationships,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	Speaker        string             `json:"speaker,omitempty"`
	OriginTurn     int                `json:"origin_turn,omitempty"`
}

func unitKey(id string) string { return unitKeyPrefix + id }

// encodeUnit serializes u. Compressed records carry the zstd magic prefix.
func encodeUnit(u *PersistentUnit, compress bool) ([]byte, error) {
	rec := unitRecord{
		Version:        recordVersion,
		ID:             u.ID,
		Content:        u.Content,
		Vector:         u.Vector,
		BaseImportance: u.BaseImportance,
		CreatedAt:      u.CreatedAt,
		LastAccess:     u.LastAccess,
		AccessCount:    u.AccessCount,
		AccessRate:     u.Access.Rate,
		AccessLast:     u.Access.Last,
		Tier:           u.Tier,
		Relationships:  u.Relationships,
		Metadata:       u.Metadata,
		Speaker:        u.Speaker,
		OriginTurn:     u.OriginTurn,
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("memory: encode unit %s: %w", u.ID, err)
	}
	if !compress {
		return data, nil
	}
	out := make([]byte, 0, len(compressedMagic)+len(data)/2)
	out = append(out, compressedMagic...)
	return zstdEncoder.EncodeAll(data, out), nil
}

// decodeUnit parses the record stored under key and checks that it is
// self-consistent: the key, id and content hash agree and the vector has
// dimension dim with finite components.
func decodeUnit(key string, data []byte, dim int) (*PersistentUnit, error) {
	corrupt := func(err error) error { return &CorruptedRecordError{Key: key, Cause: err} }

	if bytes.HasPrefix(data, compressedMagic) {
		raw, err := zstdDecoder.DecodeAll(data[len(compressedMagic):], nil)
		if err != nil {
			return nil, corrupt(fmt.Errorf("decompress: %w", err))
		}
		data = raw
	}

	var rec unitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, corrupt(err)
	}

	switch {
	case rec.Version != recordVersion:
		return nil, corrupt(fmt.Errorf("unsupported record version %d", rec.Version))
	case unitKey(rec.ID) != key:
		return nil, corrupt(fmt.Errorf("record id %q does not match key", rec.ID))
	case ContentHash(rec.Content) != rec.ID:
		return nil, corrupt(errors.New("content hash mismatch"))
	case len(rec.Vector) != dim:
		return nil, corrupt(fmt.Errorf("vector dimension %d, expected %d", len(rec.Vector), dim))
	}
	for _, x := range rec.Vector {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, corrupt(errors.New("non-finite vector component"))
		}
	}
	if !rec.Tier.Valid() {
		rec.Tier = TierWarm
	}

	return &PersistentUnit{
		ID:             rec.ID,
		Content:        rec.Content,
		Vector:         rec.Vector,
		BaseImportance: rec.BaseImportance,
		CreatedAt:      rec.CreatedAt,
		LastAccess:     rec.LastAccess,
		AccessCount:    rec.AccessCount,
		Access:         AccessRate{Rate: rec.AccessRate, Last: rec.AccessLast},
		Tier:           rec.Tier,
		Relationships:  rec.Relationships,
		Metadata:       rec.Metadata,
		Speaker:        rec.Speaker,
		OriginTurn:     rec.OriginTurn,
	}, nil
}

// isUnitKey reports whether key names a unit record.
func isUnitKey(key string) bool {
	return strings.HasPrefix(key, unitKeyPrefix)
}

func encodeSessionState(s SessionState) ([]byte, error) {
	return json.Marshal(&s)
}

func decodeSessionState(data []byte) (SessionState, error) {
	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return SessionState{}, &CorruptedRecordError{Key: sessionStateKey, Cause: err}
	}
	return s, nil
}
