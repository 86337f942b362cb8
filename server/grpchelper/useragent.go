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

package grpchelper

import (
	grpcmetadata "google.golang.org/grpc/metadata"

	"github.com/yorkie-team/livesync/api/types"
)

// UserAgent returns the user agent from the given metadata.
func UserAgent(data grpcmetadata.MD) string {
	values := data.Get(types.UserAgentKey)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
