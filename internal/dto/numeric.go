package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NumericString 金额、课时等数值字段
// 前端可能传 JSON 字符串或数字，统一保留为十进制文本交由业务校验
type NumericString string

// UnmarshalJSON 接受 "150.5"、150.5 与 null
func (n *NumericString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericString(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("应为数字或数字字符串: %w", err)
	}
	*n = NumericString(num.String())
	return nil
}
