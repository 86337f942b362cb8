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

package types

// Below are the keys of the gRPC metadata exchanged by a leader and the sync
// server.
const (
	// AuthorizationKey carries the bearer token of a request.
	AuthorizationKey = "authorization"

	// UserAgentKey carries the user agent of a leader, e.g.
	// "livesync-go/0.1.0".
	UserAgentKey = "x-livesync-user-agent"
)
