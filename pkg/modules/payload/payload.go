// Package payload provides the built-in payloads attachable to relay
// modules.
package payload

import "github.com/vulntor/xploit/pkg/relay"

// KindInspect is the payload kind of traffic inspectors.
const KindInspect = "inspect"

// Inspector is implemented by inspect payloads. OpenFilters is called once
// before the relay starts and CloseFilters once after it is disposed.
type Inspector interface {
	OpenFilters() (send, receive relay.Filter, err error)
	CloseFilters() error
}
