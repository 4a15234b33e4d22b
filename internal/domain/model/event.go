// Package model contains domain models passed between layers.
package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Wire keys used by the scoring engine when posting an update.
const (
	KeyAttempt        = "attempt"
	KeyCategoryName   = "categoryName"
	KeyFullName       = "fullName"
	KeyGroupName      = "groupName"
	KeyTeamName       = "teamName"
	KeyHidden         = "hidden"
	KeyStartNumber    = "startNumber"
	KeyWeight         = "weight"
	KeyTimeAllowed    = "timeAllowed"
	KeyAthletes       = "athletes"
	KeyLeaders        = "leaders"
	KeyLiftsDone      = "liftsDone"
	KeyTranslationMap = "translationMap"
	KeyWideTeamNames  = "wideTeamNames"
)

// UpdateEvent is an immutable snapshot of one competition state change.
//
// It only holds strings, ints, bools and NullInt values, so a copy never
// aliases another event's data. Events are passed by value everywhere.
type UpdateEvent struct {
	ID         string    `json:"-"` // log correlation only
	ReceivedAt time.Time `json:"-"`

	Attempt      string `json:"attempt"`
	CategoryName string `json:"categoryName"`
	FullName     string `json:"fullName"`
	GroupName    string `json:"groupName"`
	TeamName     string `json:"teamName"`

	Hidden      bool    `json:"hidden"`
	StartNumber int     `json:"startNumber"`
	Weight      NullInt `json:"weight"`
	TimeAllowed NullInt `json:"timeAllowed"`

	// Serialized payloads produced by the scoring engine; passed through untouched.
	Athletes       string `json:"athletes"`
	Leaders        string `json:"leaders"`
	LiftsDone      string `json:"liftsDone"`
	TranslationMap string `json:"translationMap"`

	WideTeamNames bool `json:"wideTeamNames"`
}

// Fields is the raw, unparsed form of an update as received from the engine.
// A nil entry means the key was absent.
type Fields map[string]*string

// FromValues builds an UpdateEvent from flat request parameters.
// Keys missing from values are treated as absent.
func FromValues(values url.Values) UpdateEvent {
	f := make(Fields, len(values))
	for k := range values {
		v := values.Get(k)
		f[k] = &v
	}
	return NewUpdateEvent(f)
}

// NewUpdateEvent builds an UpdateEvent, resolving every missing or malformed
// field to its documented default. It never fails.
func NewUpdateEvent(f Fields) UpdateEvent {
	return UpdateEvent{
		Attempt:        f.text(KeyAttempt),
		CategoryName:   f.text(KeyCategoryName),
		FullName:       f.text(KeyFullName),
		GroupName:      f.text(KeyGroupName),
		TeamName:       f.text(KeyTeamName),
		Hidden:         f.flag(KeyHidden),
		StartNumber:    f.integer(KeyStartNumber).Or(0),
		Weight:         f.integer(KeyWeight),
		TimeAllowed:    f.integer(KeyTimeAllowed),
		Athletes:       f.text(KeyAthletes),
		Leaders:        f.text(KeyLeaders),
		LiftsDone:      f.text(KeyLiftsDone),
		TranslationMap: f.text(KeyTranslationMap),
		WideTeamNames:  f.flag(KeyWideTeamNames),
	}
}

func (f Fields) text(key string) string {
	if v := f[key]; v != nil {
		return *v
	}
	return ""
}

func (f Fields) flag(key string) bool {
	v := f[key]
	if v == nil {
		return false
	}
	return strings.EqualFold(*v, "true")
}

func (f Fields) integer(key string) NullInt {
	v := f[key]
	if v == nil {
		return NullInt{}
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return NullInt{}
	}
	return IntOf(n)
}
