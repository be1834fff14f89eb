// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package value

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// hashPtr derives a hash from an opaque value's identity. Pointer keys
// are not expected on hot paths, so a formatted-identity hash (rather
// than unsafe pointer arithmetic) is an acceptable trade: correctness
// and portability over raw speed.
func hashPtr(p any) uint64 {
	return xxhash.ChecksumString64(fmt.Sprintf("%p|%T", p, p))
}
