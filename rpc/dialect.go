package rpc

import (
	"fmt"
	"strings"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/pubsub/query"
)

const (
	DialectTendermint = "tendermint"
	DialectEthereum   = "ethereum"
)

// Dialect tells how a node spells subscribe and unsubscribe.
type Dialect interface {
	ValidateQuery(q string) error
	SubscribeRequest(q string) conn.SubscribeRequest
	UnsubscribeRequest(sub *Subscription) (method string, params interface{})
}

// TendermintDialect subscribes with a pubsub query. Events are pushed with
// the id of the subscribe request.
var TendermintDialect Dialect = tendermintDialect{}

type tendermintDialect struct{}

func (tendermintDialect) ValidateQuery(q string) error {
	_, err := query.New(q)
	return err
}

func (tendermintDialect) SubscribeRequest(q string) conn.SubscribeRequest {
	return conn.SubscribeRequest{
		Method:        types.MethodSubscribe,
		Params:        map[string]string{"query": q},
		Query:         q,
		IDFromRequest: true,
	}
}

func (tendermintDialect) UnsubscribeRequest(sub *Subscription) (string, interface{}) {
	return types.MethodUnsubscribe, map[string]string{"query": sub.Query()}
}

// EthereumDialect subscribes through {namespace}_subscribe. The query is the
// subscription name, e.g. "newHeads", and the node returns the subscription id.
func EthereumDialect(namespace string) Dialect {
	return ethereumDialect{namespace: namespace}
}

type ethereumDialect struct {
	namespace string
}

func (d ethereumDialect) ValidateQuery(q string) error {
	if q == "" {
		return fmt.Errorf("empty subscription name")
	}
	return nil
}

func (d ethereumDialect) SubscribeRequest(q string) conn.SubscribeRequest {
	return conn.SubscribeRequest{
		Method: d.namespace + "_subscribe",
		Params: []string{q},
		Query:  q,
	}
}

func (d ethereumDialect) UnsubscribeRequest(sub *Subscription) (string, interface{}) {
	return d.namespace + "_unsubscribe", []string{sub.ID()}
}

// ParseDialect parses "tendermint", "ethereum" or "ethereum:<namespace>". An
// empty string is the tendermint dialect.
func ParseDialect(s string) (Dialect, error) {
	name, namespace, _ := strings.Cut(s, ":")
	switch name {
	case "", DialectTendermint:
		return TendermintDialect, nil
	case DialectEthereum:
		if namespace == "" {
			namespace = "eth"
		}
		return EthereumDialect(namespace), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", s)
}
