package feed

import (
	"reflect"

	"github.com/example/scry/internal/logger"
)

const detectorModule = "ChangeDetector"

type observation int

const (
	observedNothing observation = iota
	observedAbsent
	observedDigest
	observedUnhashable
)

// ChangeDetector reports whether a payload differs from the last committed one.
// Observe never moves the baseline; Commit does.
type ChangeDetector struct {
	log logger.ILogger

	baseKind   observation
	baseDigest Digest

	lastKind   observation
	lastDigest Digest
}

func NewChangeDetector(log logger.ILogger) *ChangeDetector {
	return &ChangeDetector{log: log}
}

// Observe fingerprints payload and compares it with the baseline. A nil
// payload (or a nil pointer inside an interface) means nothing is available.
func (d *ChangeDetector) Observe(payload any) bool {
	if isAbsent(payload) {
		d.lastKind, d.lastDigest = observedAbsent, 0
		return d.baseKind != observedAbsent
	}

	digest, err := ComputeDigest(payload)
	if err != nil {
		d.log.Warn(detectorModule, "Payload could not be fingerprinted, treating as changed", map[string]interface{}{
			"error": err.Error(),
		})
		d.lastKind, d.lastDigest = observedUnhashable, 0
		return true
	}

	d.lastKind, d.lastDigest = observedDigest, digest
	return d.baseKind != observedDigest || d.baseDigest != digest
}

// Commit makes the last observed payload the baseline. After an unhashable
// payload the baseline is cleared so the next observation reports a change.
func (d *ChangeDetector) Commit() {
	if d.lastKind == observedUnhashable {
		d.baseKind, d.baseDigest = observedNothing, 0
		return
	}
	d.baseKind, d.baseDigest = d.lastKind, d.lastDigest
}

// Reset forgets the baseline.
func (d *ChangeDetector) Reset() {
	d.baseKind, d.baseDigest = observedNothing, 0
	d.lastKind, d.lastDigest = observedNothing, 0
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
