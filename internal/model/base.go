package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ── PostgreSQL JSONB 自定义类型 ──

// JSONB 对应 PostgreSQL JSONB 列，实现 GORM Scanner/Valuer 接口。
type JSONB json.RawMessage

// Scan 读取 JSONB 原始文本。
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("JSONB.Scan: unsupported type %T", src)
	}
	return nil
}

// Value 写入前校验是否为合法 JSON。
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSONB.Value: invalid json")
	}
	return string(j), nil
}

// MarshalJSON 原样输出。
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// NewJSONB 序列化任意值，失败时返回 nil。
func NewJSONB(v interface{}) JSONB {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return JSONB(raw)
}
