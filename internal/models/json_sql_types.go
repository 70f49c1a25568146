package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullString - sql.NullString, который в JSON превращается в строку или null.
type NullString struct {
	sql.NullString
}

// NewNullString возвращает невалидное значение для пустой строки,
// чтобы в БД попадал NULL, а не "".
func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

// MarshalJSON реализует json.Marshaler.
func (ns NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (ns *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ns.Valid = s != nil
	ns.String = ""
	if s != nil {
		ns.String = *s
	}
	return nil
}

// NullTime - sql.NullTime с JSON в формате RFC 3339 или null.
type NullTime struct {
	sql.NullTime
}

// NewNullTime оборачивает время; нулевое время считается NULL.
func NewNullTime(t time.Time) NullTime {
	return NullTime{sql.NullTime{Time: t, Valid: !t.IsZero()}}
}

// MarshalJSON реализует json.Marshaler.
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (nt *NullTime) UnmarshalJSON(b []byte) error {
	var t *time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	nt.Valid = t != nil
	nt.Time = time.Time{}
	if t != nil {
		nt.Time = *t
	}
	return nil
}
