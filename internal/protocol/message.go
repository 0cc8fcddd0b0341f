package protocol

// Direction tags a wire message as a request or a response.
// On the wire it is exactly three ASCII bytes.
type Direction string

const (
	Request  Direction = "req"
	Response Direction = "res"
)

func (d Direction) valid() bool {
	return d == Request || d == Response
}

const (
	// tagLen + ':' + 4-byte header length + ':'
	tagLen    = 3
	prefixLen = 9
)

// Recognized header names.
const (
	HeaderMethod        = "Method"
	HeaderSession       = "Session"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
)

// Methods understood by the vault server.
const (
	MethodCreateUser     = "create_user"
	MethodLoginRequest   = "login_request"
	MethodLoginTest      = "login_test"
	MethodGetSources     = "get_sources"
	MethodGetPassword    = "get_password"
	MethodSetPassword    = "set_password"
	MethodDeletePassword = "delete_password"
	MethodDeleteUser     = "delete_user"
)

// Session header sentinels. A token prefixed with SessionClosePrefix
// asks the server to close that session once the response is sent.
const (
	SessionNone        = "-"
	SessionNew         = "*"
	SessionClosePrefix = "~"
)

// Header is one name=value entry. Entry order is preserved so that a
// decoded message re-encodes to the same bytes; lookup is by name.
type Header struct {
	Name  string
	Value string
}

// Message is one wire message. It is built in memory and treated as
// immutable once handed to Encode or returned by Decode; ownership is
// exclusive to the code that built or parsed it.
type Message struct {
	Direction Direction
	Headers   []Header
	Body      []byte
}

// Header returns the value of the first header with the given name.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// SetHeader replaces the value of an existing header in place, or
// appends a new entry when the name is not present yet.
func (m *Message) SetHeader(name, value string) {
	for i := range m.Headers {
		if m.Headers[i].Name == name {
			m.Headers[i].Value = value
			return
		}
	}
	m.Headers = append(m.Headers, Header{Name: name, Value: value})
}
