package adb

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// Two call policies. bestEffort degrades to fallback when the failure is one of swallow (or any
// failure when swallow is empty) and hands back everything else. propagate always hands the
// failure back. Both log at debug with the op name.

func bestEffort[T any](op string, fallback T, fn func() (T, error), swallow ...error) (T, error) {
	val, err := fn()
	if err == nil {
		return val, nil
	}
	if !matchesAny(err, swallow) {
		return fallback, err
	}
	log.WithFields(log.Fields{
		"type":  "best_effort_fail",
		"op":    op,
		"kind":  kindOf(err),
		"error": err,
	}).Debug("Best-effort call failed; using default")
	return fallback, nil
}

func propagate[T any](op string, fn func() (T, error)) (T, error) {
	val, err := fn()
	if err != nil {
		log.WithFields(log.Fields{
			"type":  "call_fail",
			"op":    op,
			"kind":  kindOf(err),
			"error": err,
		}).Debug("Call failed")
	}
	return val, err
}

func matchesAny(err error, kinds []error) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
