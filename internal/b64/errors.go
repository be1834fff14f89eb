// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package b64

import "errors"

// ErrInvalidCharacter reports a byte outside the base64 alphabet (and
// not the '=' pad character) encountered while decoding.
var ErrInvalidCharacter = errors.New("b64: invalid character")
