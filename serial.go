// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import "code.hybscloud.com/atomix"

// ConnectionID is a monotonically increasing handler identifier.
// Each call to NewHandler assigns the next value.
type ConnectionID = uint32

// counter is the global monotonic counter for connection IDs.
var counter atomix.Uint32

// nextConnectionID returns the next monotonically increasing ID.
func nextConnectionID() ConnectionID {
	return counter.Add(1)
}
