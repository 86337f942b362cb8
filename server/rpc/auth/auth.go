/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"context"

	"github.com/yorkie-team/livesync/pkg/errors"
)

var (
	// ErrNotAllowed is returned when the token does not grant access to the
	// requested store.
	ErrNotAllowed = errors.Unauthenticated("method is not allowed for this store")
)

// claimsKey is the key for the context.Context.
type claimsKey struct{}

// With creates a new context with the given claims.
func With(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// From returns the claims of the request, or nil when authentication is
// disabled.
func From(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// VerifyAccess verifies that the request may sync the given store.
func VerifyAccess(ctx context.Context, storeID string) error {
	claims := From(ctx)
	if claims == nil {
		return nil
	}
	if !claims.CanAccess(storeID) {
		return ErrNotAllowed
	}
	return nil
}
