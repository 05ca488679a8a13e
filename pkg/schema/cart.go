package schema

// CartItemSchemaTextV1 describes one persisted cart line.
// A cart record is an ordered sequence of these.
const CartItemSchemaTextV1 = `{
	"type": "record",
	"namespace": "darkstore",
	"name": "cart_item",
	"fields" : [
		{"name": "id", "type": "string"},
		{"name": "name", "type": "string"},
		{"name": "brand", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "price", "type": "double"},
		{"name": "originalPrice", "type": ["null", "double"], "default": null},
		{"name": "stock", "type": "long"},
		{"name": "imageUrl", "type": "string"},
		{"name": "quantity", "type": "long"}
	]
}`

type (
	CartRecordV1 []CartItemV1

	CartItemV1 struct {
		ID            string   `json:"id" avro:"id"`
		Name          string   `json:"name" avro:"name"`
		Brand         string   `json:"brand" avro:"brand"`
		Category      string   `json:"category" avro:"category"`
		Price         float64  `json:"price" avro:"price"`
		OriginalPrice *float64 `json:"originalPrice,omitempty" avro:"originalPrice"`
		Stock         int      `json:"stock" avro:"stock"`
		ImageURL      string   `json:"imageUrl" avro:"imageUrl"`
		Quantity      int      `json:"quantity" avro:"quantity"`
	}
)
