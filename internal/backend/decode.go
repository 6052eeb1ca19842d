package backend

import (
	"bytes"
	"strings"

	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/model"
)

// decodeRecords accepts a bare JSON array or an object carrying the array
// under "data", "results" or key.
func decodeRecords(op string, raw []byte, key string) ([]model.RawRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []model.RawRecord
		if err := decode(op, trimmed, &out); err != nil {
			return nil, err
		}
		return compact(out), nil
	}

	var obj map[string]any
	if err := decode(op, trimmed, &obj); err != nil {
		return nil, err
	}
	for _, k := range []string{key, "data", "results"} {
		list, ok := obj[k].([]any)
		if !ok {
			continue
		}
		out := make([]model.RawRecord, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, model.RawRecord(m))
			}
		}
		return out, nil
	}
	return []model.RawRecord{}, nil
}

func compact(in []model.RawRecord) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func firstScalar(r model.RawRecord, keys ...string) string {
	for _, k := range keys {
		if s, ok := common.ExtractScalar(r[k]); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// relationFromWire reads one relation record in either shape. Ids are kept raw;
// normalization happens in the aggregator.
func relationFromWire(kind model.EntityKind, r model.RawRecord) (model.RelationRecord, bool) {
	subject := firstScalar(r, "subjectId", kind.LegacyIDField(), "sujetId")
	object := firstScalar(r, "objectId", "cibleId")
	t, ok := model.ParseRelationType(firstScalar(r, "relationType", "typeRelation"))
	if !ok || subject == "" || object == "" {
		return model.RelationRecord{}, false
	}

	rec := model.RelationRecord{
		SubjectID:    subject,
		SubjectKind:  kind,
		RelationType: t,
		ObjectID:     object,
		ObjectKind:   t.TargetKind(),
		ObjectName:   firstScalar(r, "objectName", "cibleNom"),
	}

	attrs := map[string]string{}
	if nested, ok := r["attributes"].(map[string]any); ok {
		for k, v := range common.ExtractFields(nested) {
			attrs[k] = v
		}
	}
	for _, k := range []string{model.AttrQuantity, model.AttrUnit} {
		if v := firstScalar(r, k); v != "" {
			attrs[k] = v
		}
	}
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}
	return rec, true
}
