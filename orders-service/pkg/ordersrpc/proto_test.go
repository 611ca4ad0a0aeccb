package ordersrpc

import (
	"bufio"
	"os"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	protoPackage = regexp.MustCompile(`^package ([\w.]+);`)
	protoService = regexp.MustCompile(`^service (\w+) \{`)
	protoRPC     = regexp.MustCompile(`^\s*rpc (\w+)\(`)
	protoMessage = regexp.MustCompile(`^message (\w+) \{`)
	protoField   = regexp.MustCompile(`json_name = "(\w+)"`)
)

type protoFile struct {
	service  string
	methods  []string
	messages map[string][]string
}

func parseProto(t *testing.T, path string) protoFile {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	pf := protoFile{messages: map[string][]string{}}
	var pkg, message string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case protoPackage.MatchString(line):
			pkg = protoPackage.FindStringSubmatch(line)[1]
		case protoService.MatchString(line):
			pf.service = pkg + "." + protoService.FindStringSubmatch(line)[1]
		case protoRPC.MatchString(line):
			pf.methods = append(pf.methods, protoRPC.FindStringSubmatch(line)[1])
		case protoMessage.MatchString(line):
			message = protoMessage.FindStringSubmatch(line)[1]
			pf.messages[message] = []string{}
		case line == "}":
			message = ""
		case message != "" && protoField.MatchString(line):
			pf.messages[message] = append(pf.messages[message], protoField.FindStringSubmatch(line)[1])
		}
	}
	require.NoError(t, scanner.Err())
	return pf
}

func jsonFields(typ reflect.Type) []string {
	fields := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		fields = append(fields, name)
	}
	return fields
}

func TestProtoDocumentsTheWireContract(t *testing.T) {
	pf := parseProto(t, "orders.proto")

	assert.Equal(t, ServiceName, pf.service)
	methods := make([]string, len(ServiceDesc.Methods))
	for i, m := range ServiceDesc.Methods {
		methods[i] = m.MethodName
	}
	assert.Equal(t, methods, pf.methods)

	types := map[string]reflect.Type{
		"LineItem":               reflect.TypeOf(LineItem{}),
		"Address":                reflect.TypeOf(Address{}),
		"StatusChange":           reflect.TypeOf(StatusChange{}),
		"Order":                  reflect.TypeOf(Order{}),
		"CreateOrderRequest":     reflect.TypeOf(CreateOrderRequest{}),
		"CreateOrderResponse":    reflect.TypeOf(CreateOrderResponse{}),
		"GetOrderRequest":        reflect.TypeOf(GetOrderRequest{}),
		"OrderResponse":          reflect.TypeOf(OrderResponse{}),
		"ListOrdersRequest":      reflect.TypeOf(ListOrdersRequest{}),
		"ListAllOrdersRequest":   reflect.TypeOf(ListAllOrdersRequest{}),
		"ListOrdersResponse":     reflect.TypeOf(ListOrdersResponse{}),
		"TransitionOrderRequest": reflect.TypeOf(TransitionOrderRequest{}),
		"OrderEvent":             reflect.TypeOf(OrderEvent{}),
		"EventItem":              reflect.TypeOf(EventItem{}),
	}
	require.Len(t, pf.messages, len(types))
	for name, typ := range types {
		fields, ok := pf.messages[name]
		if assert.True(t, ok, "message %s missing from orders.proto", name) {
			assert.Equal(t, jsonFields(typ), fields, "message %s", name)
		}
	}
}
