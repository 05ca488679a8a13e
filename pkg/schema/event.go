package schema

import "time"

const (
	EventCartChanged       = "cart_changed"
	EventPersistenceFailed = "persistence_failed"
)

// CartEventSchemaTextV1 is registered under "<topic>-value".
const CartEventSchemaTextV1 = `{
	"type": "record",
	"namespace": "darkstore",
	"name": "cart_event",
	"fields" : [
		{"name": "event_id", "type": "string"},
		{"name": "kind", "type": "string"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}},
		{"name": "item_count", "type": "long"},
		{"name": "total", "type": "string"},
		{"name": "items", "type": {"type": "array", "items": {
			"type": "record",
			"name": "cart_event_item",
			"fields": [
				{"name": "id", "type": "string"},
				{"name": "price", "type": "string"},
				{"name": "quantity", "type": "long"}
			]
		}}},
		{"name": "failure_op", "type": "string", "default": ""},
		{"name": "failure_key", "type": "string", "default": ""},
		{"name": "failure_error", "type": "string", "default": ""}
	]
}`

type (
	CartEventV1 struct {
		EventID      string            `avro:"event_id"`
		Kind         string            `avro:"kind"`
		OccurredAt   time.Time         `avro:"occurred_at"`
		ItemCount    int               `avro:"item_count"`
		Total        string            `avro:"total"`
		Items        []CartEventItemV1 `avro:"items"`
		FailureOp    string            `avro:"failure_op"`
		FailureKey   string            `avro:"failure_key"`
		FailureError string            `avro:"failure_error"`
	}

	CartEventItemV1 struct {
		ID       string `avro:"id"`
		Price    string `avro:"price"`
		Quantity int    `avro:"quantity"`
	}
)
