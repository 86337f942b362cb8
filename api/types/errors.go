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

import (
	"github.com/yorkie-team/livesync/internal/validation"
	"github.com/yorkie-team/livesync/pkg/errors"
)

// InvalidFieldsError is returned when the fields of a request are invalid.
type InvalidFieldsError struct {
	Violations []validation.Violation
}

// Error returns the error message.
func (e *InvalidFieldsError) Error() string {
	return (validation.StructError{Violations: e.Violations}).Error()
}

// Status returns the error status.
func (e *InvalidFieldsError) Status() errors.StatusCode {
	return errors.ErrCodeInvalidArgument
}

// validateStruct validates the request and returns an InvalidFieldsError
// listing every violation.
func validateStruct(s interface{}) error {
	err := validation.ValidateStruct(s)
	if err == nil {
		return nil
	}

	var structErr *validation.StructError
	if errors.As(err, &structErr) {
		return &InvalidFieldsError{Violations: structErr.Violations}
	}
	return err
}
