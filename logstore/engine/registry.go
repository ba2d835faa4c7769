package engine

import (
	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
)

// Register makes a definition available to Capture. Definitions of disabled types are skipped
// and Register reports false. A later definition with the same id replaces the earlier one.
func (e *Engine) Register(definition logstore.Definition) bool {
	typeID := definition.ID()

	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	if _, disabled := e.disabledTypes[typeID]; disabled {
		e.logOperation(logMsgTypeDisabled, logAttrType, typeID)
		return false
	}

	e.definitions[typeID] = definition
	e.logOperation(logMsgTypeRegistered, logAttrType, typeID)

	return true
}

// Capture runs the definition registered for typeID against source and enqueues the captured
// record. It returns false, and no receipt, for unknown types and sources the definition declines.
func (e *Engine) Capture(typeID string, source any) (*ingest.Receipt, bool) {
	e.registryMu.RLock()
	definition, ok := e.definitions[typeID]
	e.registryMu.RUnlock()

	if !ok || !definition.ShouldLog(source) {
		return nil, false
	}

	return e.Enqueue(logstore.NewRecord(typeID, definition.Capture(source))), true
}

// FilterableParameters returns the payload keys operators can filter records of typeID on.
func (e *Engine) FilterableParameters(typeID string) ([]logstore.Parameter, bool) {
	e.registryMu.RLock()
	defer e.registryMu.RUnlock()

	definition, ok := e.definitions[typeID]
	if !ok {
		return nil, false
	}

	return definition.FilterableParameters(), true
}

// Submit enqueues an externally built record unless its type is disabled.
func (e *Engine) Submit(recordType string, payload logstore.Payload) (*ingest.Receipt, bool) {
	e.registryMu.RLock()
	_, disabled := e.disabledTypes[recordType]
	e.registryMu.RUnlock()

	if disabled {
		return nil, false
	}

	return e.Enqueue(logstore.NewRecord(recordType, payload)), true
}
