package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://callintel.local/insights.schema.json"

type obj = map[string]any

func object(props obj, required ...string) obj {
	return obj{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func str() obj                { return obj{"type": "string"} }
func boolean() obj            { return obj{"type": "boolean"} }
func nullableStr() obj        { return obj{"type": []string{"string", "null"}} }
func enum(vals ...string) obj { return obj{"type": "string", "enum": vals} }
func unit() obj               { return obj{"type": "number", "minimum": 0, "maximum": 1} }
func nullableUnit() obj       { return obj{"type": []string{"number", "null"}, "minimum": 0, "maximum": 1} }
func count() obj              { return obj{"type": "integer", "minimum": 0} }
func arrayOf(items obj) obj   { return obj{"type": "array", "items": items} }
func ref(def string) obj      { return obj{"$ref": "#/$defs/" + def} }
func strList() obj            { return arrayOf(str()) }

func entityShape() obj {
	return object(obj{
		"type":       str(),
		"value":      str(),
		"currency":   nullableStr(),
		"confidence": nullableUnit(),
	}, "type", "value", "currency", "confidence")
}

func obligationShape() obj {
	return object(obj{
		"text":       str(),
		"speaker":    nullableStr(),
		"due_date":   nullableStr(),
		"confidence": nullableUnit(),
	}, "text", "speaker", "due_date", "confidence")
}

func reviewItemShape() obj {
	return object(obj{
		"field":           str(),
		"current_value":   str(),
		"suggested_value": str(),
		"rationale":       str(),
	}, "field", "current_value", "suggested_value", "rationale")
}

func insightsShape() obj {
	levels := []string{"low", "medium", "high", "unknown"}
	return object(obj{
		"summary":           str(),
		"primary_intent":    str(),
		"intent_confidence": unit(),
		"secondary_intents": strList(),
		"entities":          arrayOf(entityShape()),
		"obligations":       arrayOf(obligationShape()),
		"regulatory_flags":  strList(),
		"risk_level":        enum("low", "medium", "high"),
		"sentiment":         enum("positive", "neutral", "negative", "mixed"),
		"emotions": arrayOf(object(obj{
			"label": str(),
			"score": unit(),
		}, "label", "score")),
		"pii_detected": boolean(),
		"action_items": strList(),
		"ingestion": object(obj{
			"detected_language":   str(),
			"language_confidence": unit(),
			"noise_level":         enum(levels...),
			"call_quality_score":  unit(),
			"speaker_diarization": object(obj{
				"speaker_count":  count(),
				"speaker_labels": strList(),
			}, "speaker_count", "speaker_labels"),
			"tamper_replay_risk": enum(levels...),
			"ingest_flags":       strList(),
		}, "detected_language", "language_confidence", "noise_level", "call_quality_score",
			"speaker_diarization", "tamper_replay_risk", "ingest_flags"),
		"transcription": object(obj{
			"asr_summary":            str(),
			"transcript_language":    str(),
			"multilingual_switching": boolean(),
			"asr_confidence":         unit(),
			"domain_terms":           strList(),
			"profanity_terms":        strList(),
			"pii_items": arrayOf(object(obj{
				"type":       str(),
				"value":      str(),
				"confidence": unit(),
			}, "type", "value", "confidence")),
		}, "asr_summary", "transcript_language", "multilingual_switching", "asr_confidence",
			"domain_terms", "profanity_terms", "pii_items"),
		"understanding": object(obj{
			"financial_entity_layer_count": count(),
			"obligation_count":             count(),
			"emotion_stress_markers":       strList(),
			"regulatory_phrase_count":      count(),
		}, "financial_entity_layer_count", "obligation_count", "emotion_stress_markers",
			"regulatory_phrase_count"),
		"review": object(obj{
			"needs_human_review": boolean(),
			"review_reasons":     strList(),
			"correction_queue":   arrayOf(reviewItemShape()),
		}, "needs_human_review", "review_reasons", "correction_queue"),
	}, "summary", "primary_intent", "intent_confidence", "secondary_intents", "entities",
		"obligations", "regulatory_flags", "risk_level", "sentiment", "emotions", "pii_detected",
		"action_items", "ingestion", "transcription", "understanding", "review")
}

// propsDefs names the $defs entry for every node type's props.
var propsDefs = map[NodeType]string{
	InsightsLayout:  "insights_layout_props",
	Section:         "section_props",
	SummaryCard:     "summary_card_props",
	StatGrid:        "stat_grid_props",
	EntityTable:     "entity_table_props",
	ObligationList:  "obligation_list_props",
	TagList:         "tag_list_props",
	ActionList:      "action_list_props",
	ConfidenceMeter: "confidence_meter_props",
	ReviewQueue:     "review_queue_props",
}

func definitions() obj {
	defs := obj{
		"stat_item": object(obj{
			"label": str(),
			"value": str(),
			"tone":  nullableStr(),
		}, "label", "value", "tone"),
		"entity_row":      entityShape(),
		"obligation_item": obligationShape(),
		"review_item":     reviewItemShape(),

		"insights_layout_props":  object(obj{"title": str(), "subtitle": nullableStr()}, "title", "subtitle"),
		"section_props":          object(obj{"title": str(), "description": nullableStr()}, "title", "description"),
		"summary_card_props":     object(obj{"title": str(), "text": str()}, "title", "text"),
		"stat_grid_props":        object(obj{"items": arrayOf(ref("stat_item"))}, "items"),
		"entity_table_props":     object(obj{"title": str(), "rows": arrayOf(ref("entity_row"))}, "title", "rows"),
		"obligation_list_props":  object(obj{"title": str(), "items": arrayOf(ref("obligation_item"))}, "title", "items"),
		"tag_list_props":         object(obj{"title": str(), "tags": strList()}, "title", "tags"),
		"action_list_props":      object(obj{"title": str(), "items": strList()}, "title", "items"),
		"confidence_meter_props": object(obj{"label": str(), "value": unit()}, "label", "value"),
		"review_queue_props":     object(obj{"title": str(), "items": arrayOf(ref("review_item"))}, "title", "items"),
	}

	types := make([]string, 0, len(NodeTypes))
	anyOf := make([]obj, 0, len(NodeTypes))
	for _, t := range NodeTypes {
		types = append(types, string(t))
		anyOf = append(anyOf, ref(propsDefs[t]))
	}
	defs["ui_node"] = object(obj{
		"type":     enum(types...),
		"props":    obj{"anyOf": anyOf},
		"children": arrayOf(ref("ui_node")),
	}, "type", "props", "children")
	return defs
}

func buildSchema() obj {
	s := object(obj{
		"insights": insightsShape(),
		"ui_spec":  object(obj{"root": ref("ui_node")}, "root"),
	}, "insights", "ui_spec")
	s["$defs"] = definitions()
	return s
}

var (
	schemaOnce sync.Once
	schemaJSON json.RawMessage
	schemaErr  error
	validator  *jsonschema.Schema
)

func loadSchema() {
	schemaJSON, schemaErr = json.Marshal(buildSchema())
	if schemaErr != nil {
		return
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		schemaErr = err
		return
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		schemaErr = err
		return
	}
	validator, schemaErr = c.Compile(schemaURL)
}

// Schema returns the closed JSON schema the generation backend must follow.
func Schema() (json.RawMessage, error) {
	schemaOnce.Do(loadSchema)
	return schemaJSON, schemaErr
}

// Validate checks raw generation output against Schema.
func Validate(data []byte) error {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return fmt.Errorf("compile insights schema: %w", schemaErr)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return validator.Validate(inst)
}
