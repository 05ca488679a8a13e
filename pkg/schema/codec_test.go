package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartFixture() []CartItemV1 {
	orig := 129.9
	return []CartItemV1{
		{
			ID:            "p1",
			Name:          "Headset",
			Brand:         "Dark",
			Category:      "audio",
			Price:         99.9,
			OriginalPrice: &orig,
			Stock:         3,
			ImageURL:      "https://img/p1.png",
			Quantity:      2,
		},
		{
			ID:       "p2",
			Name:     "Mouse",
			Brand:    "Dark",
			Category: "peripherals",
			Price:    20,
			Stock:    10,
			Quantity: 1,
		},
	}
}

func TestCartCodecs(t *testing.T) {
	for _, name := range []string{CodecJSON, CodecAvro} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCartCodec(name)
			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())

			t.Run("RoundTrip", func(t *testing.T) {
				in := cartFixture()
				data, err := codec.Encode(in)
				require.NoError(t, err)

				out, err := codec.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, in, out)
			})

			t.Run("Empty", func(t *testing.T) {
				data, err := codec.Encode(nil)
				require.NoError(t, err)

				out, err := codec.Decode(data)
				require.NoError(t, err)
				assert.Empty(t, out)
			})

			t.Run("Garbage", func(t *testing.T) {
				_, err := codec.Decode([]byte("{not a cart"))
				assert.Error(t, err)
			})
		})
	}
}

func TestJSONCodecLayout(t *testing.T) {
	data, err := JSONCodec[CartItemV1]{}.Encode(cartFixture()[1:])
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": "p2", "name": "Mouse", "brand": "Dark", "category": "peripherals",
		"price": 20, "stock": 10, "imageUrl": "", "quantity": 1
	}]`, string(data))
}

func TestJSONCodecRejectsForeignShapes(t *testing.T) {
	codec := JSONCodec[CartItemV1]{}

	_, err := codec.Decode([]byte(`{"id": "p1"}`))
	assert.Error(t, err, "object instead of array")

	_, err = codec.Decode([]byte(`[{"id": "p1", "qty": 2}]`))
	assert.Error(t, err, "unknown field")

	_, err = codec.Decode([]byte(`[] []`))
	assert.Error(t, err, "trailing data")

	out, err := codec.Decode([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewCartCodec("xml")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = NewProductCodec("xml")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
