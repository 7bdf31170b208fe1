package metadata

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Tags are persisted as a heterogeneous JSON array discriminated by the
// "category" field. Each variant marshals its category alongside its own
// fields; unmarshalling dispatches on the discriminator.

type taggedParticipant struct {
	Category Category `json:"category"`
	ParticipantTag
}

type taggedDocument struct {
	Category Category `json:"category"`
	DocumentTag
}

type taggedValue struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
}

func (t ParticipantTag) MarshalJSON() ([]byte, error) {
	type alias ParticipantTag
	return json.Marshal(struct {
		Category Category `json:"category"`
		alias
	}{CategoryParticipant, alias(t)})
}

func (t DocumentTag) MarshalJSON() ([]byte, error) {
	type alias DocumentTag
	return json.Marshal(struct {
		Category Category `json:"category"`
		alias
	}{CategoryDocument, alias(t)})
}

func (t ModelTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedValue{CategoryModel, t.Value})
}

func (t AgentTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedValue{CategoryAgent, t.Value})
}

func (t SemanticTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedValue{CategorySemantic, t.Value})
}

func (t WebTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedValue{CategoryWeb, t.Value})
}

// UnmarshalTag decodes one tag object, dispatching on its category.
func UnmarshalTag(raw json.RawMessage) (Tag, error) {
	var head struct {
		Category Category `json:"category"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errors.Wrap(err, "failed to read tag category")
	}

	switch head.Category {
	case CategoryParticipant:
		var t taggedParticipant
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal participant tag")
		}
		return t.ParticipantTag, nil
	case CategoryDocument:
		var t taggedDocument
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal document tag")
		}
		return t.DocumentTag, nil
	case CategoryModel:
		var t taggedValue
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal model tag")
		}
		return ModelTag{Value: t.Value}, nil
	case CategoryAgent:
		var t taggedValue
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal agent tag")
		}
		return AgentTag{Value: t.Value}, nil
	case CategorySemantic:
		var t taggedValue
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal semantic tag")
		}
		return SemanticTag{Value: t.Value}, nil
	case CategoryWeb:
		var t taggedValue
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal web tag")
		}
		return WebTag{Value: t.Value}, nil
	default:
		return nil, errors.Errorf("unknown tag category: %q", head.Category)
	}
}

// UnmarshalJSON decodes the persisted document, including the tag union.
func (d *Document) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Context        []ContextEntry    `json:"context"`
		Tags           []json.RawMessage `json:"tags"`
		Strict         bool              `json:"strict"`
		Classification []string          `json:"classification"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return errors.Wrap(err, "failed to unmarshal metadata document")
	}

	d.Context = shadow.Context
	if d.Context == nil {
		d.Context = []ContextEntry{}
	}
	d.Strict = shadow.Strict
	d.Classification = shadow.Classification
	if d.Classification == nil {
		d.Classification = []string{}
	}

	d.Tags = make([]Tag, 0, len(shadow.Tags))
	for _, raw := range shadow.Tags {
		tag, err := UnmarshalTag(raw)
		if err != nil {
			return err
		}
		d.Tags = append(d.Tags, tag)
	}
	return nil
}
