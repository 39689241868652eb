// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

// Direction tells who initiated a substream or an execution.
type Direction uint8

const (
	// Inbound is remote-initiated: the local side acts as listener.
	Inbound Direction = iota
	// Outbound is locally initiated: the local side acts as dialer.
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	}
	return "invalid"
}
