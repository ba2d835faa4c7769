package logstore

// ParameterType describes how a filterable payload parameter should be entered and compared.
type ParameterType string

const (
	ParameterString  ParameterType = "STRING"
	ParameterUUID    ParameterType = "UUID"
	ParameterInteger ParameterType = "INTEGER"
	ParameterDouble  ParameterType = "DOUBLE"
	ParameterBoolean ParameterType = "BOOLEAN"
)

// Parameter is a payload key operators can filter on.
type Parameter struct {
	Key         string        `json:"key"`
	DisplayName string        `json:"display_name"`
	Type        ParameterType `json:"type"`
}

// Definition describes one capturable record type.
//
// A capture adapter hands the host's raw event (source) to ShouldLog; when it returns
// true, Capture extracts the payload and the record is enqueued under ID.
type Definition interface {
	ID() string
	ShouldLog(source any) bool
	Capture(source any) Payload
	FilterableParameters() []Parameter
}

// DefinitionFunc adapts plain functions to the Definition interface.
// A nil Predicate logs every source.
type DefinitionFunc struct {
	TypeID     string
	Predicate  func(source any) bool
	Extractor  func(source any) Payload
	Parameters []Parameter
}

func (d DefinitionFunc) ID() string {
	return d.TypeID
}

func (d DefinitionFunc) ShouldLog(source any) bool {
	if d.Predicate == nil {
		return true
	}

	return d.Predicate(source)
}

func (d DefinitionFunc) Capture(source any) Payload {
	if d.Extractor == nil {
		return NewPayload()
	}

	return d.Extractor(source)
}

func (d DefinitionFunc) FilterableParameters() []Parameter {
	out := make([]Parameter, len(d.Parameters))
	copy(out, d.Parameters)

	return out
}
