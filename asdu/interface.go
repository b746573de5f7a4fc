// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

// Connect is the transmission surface the builder helpers send through.
// Both the cs104 client and the cs104 server sessions implement it.
type Connect interface {
	Params() *Params
	Send(a *ASDU) error
}
