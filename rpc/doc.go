/*
Package rpc provides JSON-RPC 2.0 clients for CometBFT (Tendermint) nodes.

[HTTPClient] performs every call as its own POST and can't subscribe.
[WebSocketClient] keeps one connection open and multiplexes calls and
subscriptions over it; see [github.com/DOIDFoundation/tmrpc/conn] for the
connection itself. [Dial] picks one by the scheme of the address.

# Example

request:

	{"jsonrpc":"2.0","id":1,"method":"block","params":{"height":"5"}}

response:

	{"jsonrpc":"2.0","id":1,"result":{"block_id":{...},"block":{...}}}

A node error is returned as a [github.com/DOIDFoundation/tmrpc/types.RPCError]:

	{"jsonrpc":"2.0","id":2,"error":{"code":-32603,"message":"Internal error","data":"height 10 must be less than or equal to the current blockchain height 5"}}

# Subscriptions

With [TendermintDialect] a subscription is made with a pubsub query:

	{"jsonrpc":"2.0","id":3,"method":"subscribe","params":{"query":"tm.event='NewBlock'"}}

The node answers with an empty result and pushes events with the id of the
subscribe request. Older nodes push them as results:

	{"jsonrpc":"2.0","id":3,"result":{"query":"tm.event='NewBlock'","data":{"type":"tendermint/event/NewBlock","value":{...}},"events":{...}}}

newer ones with an "#event" suffix on the id:

	{"jsonrpc":"2.0","id":"3#event","result":{"query":"tm.event='NewBlock'","data":{...},"events":{...}}}

[DecodeEvent] decodes the payload into a ResultEvent.

With [EthereumDialect] the query is a subscription name and the node returns
the subscription id:

	{"jsonrpc":"2.0","id":4,"method":"eth_subscribe","params":["newHeads"]}
	{"jsonrpc":"2.0","id":4,"result":"0xd37be67a9aaa143969d24cada292a445"}
	{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xd37be67a9aaa143969d24cada292a445","result":{...}}}
*/
package rpc
