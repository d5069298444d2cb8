package core

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., a decoded JSON object).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// clonePart copies the maps carried by a part so the copy can diverge.
func clonePart(p Part) Part {
	switch v := p.(type) {
	case TextPart:
		v.Metadata = cloneAnyMap(v.Metadata)
		return v
	case DataPart:
		v.Data = cloneAnyMap(v.Data)
		v.Metadata = cloneAnyMap(v.Metadata)
		return v
	default:
		return p
	}
}

// cloneAnyMap deep-copies nested maps and slices; other values are shared.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneAnyMap(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		if v == nil {
			return v
		}
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
