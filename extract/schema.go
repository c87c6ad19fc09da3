package extract

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema constrains the model's JSON envelope before decoding.
// Shape errors are caught here with a precise pointer instead of surfacing
// as zero-valued structs downstream. Numeric fields allow null because the
// source tables omit values.
const responseSchema = `{
  "type": "object",
  "required": ["is_valid", "reason", "Group_A", "Group_B", "Group_C"],
  "properties": {
    "is_valid": {"type": "boolean"},
    "reason": {"type": "string"},
    "Group_A": {"$ref": "#/$defs/group"},
    "Group_B": {"$ref": "#/$defs/group"},
    "Group_C": {"$ref": "#/$defs/group"}
  },
  "$defs": {
    "group": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["specimen_label"],
        "properties": {
          "specimen_label": {"type": "string"},
          "fc_value": {"type": ["number", "null"]},
          "fc_type": {"type": ["string", "null"]},
          "fy": {"type": ["number", "null"]},
          "r_ratio": {"type": ["number", "null"]},
          "b": {"type": ["number", "null"]},
          "h": {"type": ["number", "null"]},
          "t": {"type": ["number", "null"]},
          "r0": {"type": ["number", "null"]},
          "L": {"type": ["number", "null"]},
          "e1": {"type": ["number", "null"]},
          "e2": {"type": ["number", "null"]},
          "n_exp": {"type": ["number", "null"]},
          "source_evidence": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("extraction-response.json", responseSchema)
