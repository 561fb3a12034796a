package avdl

import "fmt"

var (
	protocolReserved = []string{"protocol", "namespace", "doc", "types", "messages"}
	messageReserved  = []string{"doc", "request", "response", "errors", "one-way"}
)

type protocolConfig struct {
	doc   string
	props []Property
}

// ProtocolOption configures a Protocol or Message at construction time.
type ProtocolOption func(*protocolConfig)

// WithProtoDoc sets a protocol's or message's doc comment.
func WithProtoDoc(doc string) ProtocolOption {
	return func(c *protocolConfig) { c.doc = doc }
}

// WithProtoProps sets a protocol's or message's properties, in order.
func WithProtoProps(props []Property) ProtocolOption {
	return func(c *protocolConfig) { c.props = props }
}

// Protocol is a named collection of schemas plus RPC messages (spec §3).
type Protocol struct {
	name
	properties

	doc      string
	types    []NamedSchema
	msgNames []string
	messages map[string]*Message
}

// NewProtocol creates a protocol.
func NewProtocol(
	n, namespace string, types []NamedSchema, messages map[string]*Message, msgOrder []string, opts ...ProtocolOption,
) (*Protocol, error) {
	var cfg protocolConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	nm, err := newName(n, namespace, nil)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = map[string]*Message{}
	}
	return &Protocol{
		name:       nm,
		properties: newProperties(cfg.props, protocolReserved),
		doc:        cfg.doc,
		types:      types,
		msgNames:   msgOrder,
		messages:   messages,
	}, nil
}

// Doc returns the protocol's doc comment.
func (p *Protocol) Doc() string { return p.doc }

// Types returns the protocol's declared named types, in declaration order.
func (p *Protocol) Types() []NamedSchema { return p.types }

// SetTypes replaces the protocol's type list. Used by the import loader
// when merging in imported named types.
func (p *Protocol) SetTypes(types []NamedSchema) { p.types = types }

// Message returns the named message, or nil.
func (p *Protocol) Message(name string) *Message { return p.messages[name] }

// Messages returns the protocol's messages, keyed by name.
func (p *Protocol) Messages() map[string]*Message { return p.messages }

// MessageNames returns message names in declaration order.
func (p *Protocol) MessageNames() []string { return p.msgNames }

// AddMessage appends a message, preserving declaration order, and reports
// whether the name already existed (spec §4.3: "Message-name collisions on
// import are always fatal" — the caller decides how to react).
func (p *Protocol) AddMessage(name string, msg *Message) (replaced bool) {
	if _, ok := p.messages[name]; ok {
		replaced = true
	} else {
		p.msgNames = append(p.msgNames, name)
	}
	p.messages[name] = msg
	return replaced
}

// AddType appends a named type declaration, preserving declaration order.
func (p *Protocol) AddType(s NamedSchema) {
	p.types = append(p.types, s)
}

// Message is one RPC method: request parameters, response schema, an
// optional error set, and a one-way flag (spec §3).
type Message struct {
	properties

	doc    string
	req    []*Field
	resp   Schema
	errs   []Schema // nil means "no throws clause"; never non-nil-but-empty
	oneWay bool
}

// NewMessage creates a protocol message.
func NewMessage(req []*Field, resp Schema, errs []Schema, oneWay bool, opts ...ProtocolOption) *Message {
	var cfg protocolConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Message{
		properties: newProperties(cfg.props, messageReserved),
		doc:        cfg.doc,
		req:        req,
		resp:       resp,
		errs:       errs,
		oneWay:     oneWay,
	}
}

// Doc returns the message's doc comment.
func (m *Message) Doc() string { return m.doc }

// Request returns the message's request parameters, in declaration order.
func (m *Message) Request() []*Field { return m.req }

// Response returns the message's response schema.
func (m *Message) Response() Schema { return m.resp }

// SetResponse replaces the response schema. Used by the resolver.
func (m *Message) SetResponse(s Schema) { m.resp = s }

// Errors returns the declared `throws` types, or nil if the message had no
// `throws` clause at all.
func (m *Message) Errors() []Schema { return m.errs }

// SetError replaces the i'th error type. Used by the resolver.
func (m *Message) SetError(i int, s Schema) {
	if i >= 0 && i < len(m.errs) {
		m.errs[i] = s
	}
}

// OneWay reports whether the message is one-way.
func (m *Message) OneWay() bool { return m.oneWay }

// ValidateMessageShape enforces spec §4.2's oneway rules: a oneway
// message's response must be void (Null) and it may not declare `throws`.
func ValidateMessageShape(name string, resp Schema, errs []Schema, oneWay bool) error {
	if !oneWay {
		return nil
	}
	if resp != nil && resp.Type() != Null {
		return fmt.Errorf("avdl: message %q is oneway but has a non-void response", name)
	}
	if errs != nil {
		return fmt.Errorf("avdl: message %q is oneway but declares throws", name)
	}
	return nil
}
