package sysdb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire encoding mirrors pkg/wal/pkg/catalog/pkg/checkpoint's hand-rolled
// protowire field layout: no .proto/.pb.go ships in the retrieval pack,
// so every package that needs a durable record picks the same ad hoc
// format rather than each inventing its own.
const (
	fUserName      = 1
	fUserHash      = 2
	fUserSalt      = 3
	fUserRole      = 4 // repeated
	fUserCreatedAt = 5
)

func encodeUser(u UserRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, fUserName, protowire.BytesType)
	b = protowire.AppendString(b, u.Username)
	b = protowire.AppendTag(b, fUserHash, protowire.BytesType)
	b = protowire.AppendBytes(b, u.PasswordHash)
	b = protowire.AppendTag(b, fUserSalt, protowire.BytesType)
	b = protowire.AppendBytes(b, u.Salt)
	for _, r := range u.Roles {
		b = protowire.AppendTag(b, fUserRole, protowire.BytesType)
		b = protowire.AppendString(b, string(r))
	}
	b = protowire.AppendTag(b, fUserCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.CreatedAt))
	return b
}

func decodeUser(buf []byte) (UserRecord, error) {
	var u UserRecord
	err := walkFields(buf, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fUserName:
			u.Username = string(v)
		case fUserHash:
			u.PasswordHash = append([]byte(nil), v...)
		case fUserSalt:
			u.Salt = append([]byte(nil), v...)
		case fUserRole:
			u.Roles = append(u.Roles, Role(v))
		case fUserCreatedAt:
			u.CreatedAt = int64(mustVarint(v))
		}
		return nil
	})
	return u, err
}

func mustVarint(raw []byte) uint64 {
	v, _ := protowire.ConsumeVarint(raw)
	return v
}

func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("sysdb: invalid field tag: %v", protowire.ParseError(n))
		}
		buf = buf[n:]

		var value []byte
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(buf)
			if m < 0 {
				return fmt.Errorf("sysdb: invalid varint field: %v", protowire.ParseError(m))
			}
			value = protowire.AppendVarint(nil, v)
			buf = buf[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(buf)
			if m < 0 {
				return fmt.Errorf("sysdb: invalid bytes field: %v", protowire.ParseError(m))
			}
			value = v
			buf = buf[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, buf)
			if m < 0 {
				return fmt.Errorf("sysdb: invalid field value: %v", protowire.ParseError(m))
			}
			value = buf[:m]
			buf = buf[m:]
		}

		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}
