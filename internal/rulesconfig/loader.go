package rulesconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML rules file on top of base and returns the result with raw bytes.
// path == "" → base only (validated). base == nil → Default().
//
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패.
// 파일에 없는 섹션은 base 값 유지, map 은 base 테이블에 키가 추가됨.
func Load(path string, base *Config) (*Config, []byte, error) {
	if base == nil {
		base = Default()
	}

	if path == "" {
		if err := Validate(base); err != nil {
			return nil, nil, err
		}
		return base, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules: %w", err)
	}

	cfg, err := Parse(data, base)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes YAML rules over base and validates the result
func Parse(data []byte, base *Config) (*Config, error) {
	cfg := base.clone()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON).
// encoding/json sorts map keys, so equal rules hash equal.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
