package protobuf

import "testing"

func TestParseVarintAndBytes(t *testing.T) {
	// field 1, varint 150; field 2, length-delimited "hi"
	buf := []byte{
		0x08, 0x96, 0x01, // tag=(1<<3)|0, varint 150
		0x12, 0x02, 'h', 'i', // tag=(2<<3)|2, len 2, "hi"
	}

	fields, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	vs := fields[1]
	if len(vs) != 1 || vs[0].WireType != WireVarint || vs[0].Varint != 150 {
		t.Fatalf("field 1 = %+v, want one varint(150)", vs)
	}

	bs := fields[2]
	if len(bs) != 1 || bs[0].WireType != WireBytes || string(bs[0].Bytes) != "hi" {
		t.Fatalf("field 2 = %+v, want one bytes(\"hi\")", bs)
	}
}

func TestParseRepeatedField(t *testing.T) {
	buf := []byte{
		0x08, 0x01,
		0x08, 0x02,
		0x08, 0x03,
	}
	fields, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fields[1]) != 3 {
		t.Fatalf("field 1 occurrences = %d, want 3", len(fields[1]))
	}
	for i, want := range []uint64{1, 2, 3} {
		if fields[1][i].Varint != want {
			t.Errorf("occurrence %d = %d, want %d", i, fields[1][i].Varint, want)
		}
	}
}

func TestParseTruncatedVarintStopsCleanly(t *testing.T) {
	buf := []byte{0x08, 0x96} // continuation bit set, no terminating byte
	fields, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("fields = %+v, want empty on truncated input", fields)
	}
}

func TestReadVarintMultiByte(t *testing.T) {
	v, n, ok := readVarint([]byte{0x96, 0x01, 0xFF})
	if !ok || v != 150 || n != 2 {
		t.Fatalf("readVarint = (%d, %d, %v), want (150, 2, true)", v, n, ok)
	}
}

func TestFieldNumberZeroTerminates(t *testing.T) {
	buf := []byte{0x00, 0x08, 0x01} // tag with field number 0
	fields, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("fields = %+v, want empty once field 0 is hit", fields)
	}
}
