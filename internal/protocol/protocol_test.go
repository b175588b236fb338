package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRequest_MarshalShape(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{GetRequest("k"), `{"Get":"k"}`},
		{SetRequest("k", "v"), `{"Set":["k","v"]}`},
		{RmRequest("k"), `{"Rm":"k"}`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.req)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(data) != tt.want {
			t.Fatalf("Marshal = %s, want %s", data, tt.want)
		}
	}
}

func TestResponse_MarshalShape(t *testing.T) {
	tests := []struct {
		resp Response
		want string
	}{
		{SuccessResponse(), `"Success"`},
		{KeyNotFoundResponse(), `"KeyNotFound"`},
		{OkResponse("v"), `{"Ok":"v"}`},
		{AbsentResponse(), `{"Ok":null}`},
		{ErrResponse(), `"Err"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.resp)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(data) != tt.want {
			t.Fatalf("Marshal = %s, want %s", data, tt.want)
		}
	}
}

func TestFrame_RoundTripBitIdentical(t *testing.T) {
	requests := []Request{
		GetRequest("key"),
		SetRequest("key", "value with \"quotes\" and\nnewlines"),
		RmRequest(""),
	}

	for _, req := range requests {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, req); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		first := append([]byte(nil), buf.Bytes()...)

		got, err := ReadRequest(&buf)
		if err != nil {
			t.Fatalf("ReadRequest: %v", err)
		}
		if got != req {
			t.Fatalf("round trip = %+v, want %+v", got, req)
		}

		var again bytes.Buffer
		if err := WriteRequest(&again, got); err != nil {
			t.Fatalf("re-WriteRequest: %v", err)
		}
		if !bytes.Equal(again.Bytes(), first) {
			t.Fatalf("re-encoded frame differs: %x vs %x", again.Bytes(), first)
		}
	}

	responses := []Response{
		SuccessResponse(),
		KeyNotFoundResponse(),
		OkResponse("value"),
		AbsentResponse(),
		ErrResponse(),
	}

	for _, resp := range responses {
		var buf bytes.Buffer
		if err := WriteResponse(&buf, resp); err != nil {
			t.Fatalf("WriteResponse: %v", err)
		}
		first := append([]byte(nil), buf.Bytes()...)

		got, err := ReadResponse(&buf)
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}

		var again bytes.Buffer
		if err := WriteResponse(&again, got); err != nil {
			t.Fatalf("re-WriteResponse: %v", err)
		}
		if !bytes.Equal(again.Bytes(), first) {
			t.Fatalf("re-encoded frame differs: %x vs %x", again.Bytes(), first)
		}
	}
}

func TestReadFrame_TruncatedLength(t *testing.T) {
	var req Request
	err := ReadFrame(strings.NewReader("\x00\x00"), &req)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("ReadFrame = %v, want ErrProtocol", err)
	}
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	var req Request
	err := ReadFrame(strings.NewReader("\x00\x00\x00\x10{\"Get\""), &req)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("ReadFrame = %v, want ErrProtocol", err)
	}
}

func TestReadFrame_InvalidJSON(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 3})
	buf.WriteString("{{{")

	var req Request
	if err := ReadFrame(&buf, &req); !errors.Is(err, ErrProtocol) {
		t.Fatalf("ReadFrame = %v, want ErrProtocol", err)
	}
}

func TestReadFrame_OversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	var req Request
	if err := ReadFrame(&buf, &req); !errors.Is(err, ErrProtocol) {
		t.Fatalf("ReadFrame = %v, want ErrProtocol", err)
	}
}

func TestRequest_UnmarshalRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"Get":"a","Rm":"b"}`,
		`{"Query":"k"}`,
		`{"Set":{"k":"v"}}`,
		`"Get"`,
	} {
		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err == nil {
			t.Fatalf("Unmarshal(%s) should fail", raw)
		}
	}
}

func TestResponse_UnmarshalRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`"Victory"`,
		`{"Err":"detail"}`,
		`{}`,
		`42`,
	} {
		var resp Response
		if err := json.Unmarshal([]byte(raw), &resp); err == nil {
			t.Fatalf("Unmarshal(%s) should fail", raw)
		}
	}
}

func TestEmptyKeyAndValueSurvive(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, SetRequest("", "")); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	got, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got.Key != "" || got.Value != "" || got.Op != OpSet {
		t.Fatalf("got %+v", got)
	}
}
