package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector is an embedding stored as a JSON array in a text column.
// NULL maps to a nil Vector and back.
type Vector []float32

// Scan implements sql.Scanner.
func (v *Vector) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("scan vector: unsupported source type %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan vector: %w", err)
	}
	*v = out
	return nil
}

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}

func (Vector) GormDataType() string {
	return "text"
}

// GormDBDataType widens the column on MySQL, where TEXT caps at 64KB.
func (Vector) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "MEDIUMTEXT"
	}
	return "TEXT"
}

// Magnitude returns the Euclidean norm.
func (v Vector) Magnitude() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsZero reports whether the vector is empty or has zero magnitude.
func (v Vector) IsZero() bool {
	return len(v) == 0 || v.Magnitude() == 0
}

// Mean averages equally sized vectors component-wise. Vectors whose length
// differs from the first one are skipped.
func Mean(vectors []Vector) Vector {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	n := 0
	for _, vec := range vectors {
		if len(vec) != dim {
			continue
		}
		for i, x := range vec {
			sum[i] += float64(x)
		}
		n++
	}
	out := make(Vector, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(n))
	}
	return out
}
