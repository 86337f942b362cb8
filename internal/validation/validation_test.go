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

package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidation(t *testing.T) {
	t.Run("ValidateValue test", func(t *testing.T) {
		err := ValidateValue("todos-2026.v1", "required,store_id,max=128")
		assert.Nil(t, err, "valid store id")

		err = ValidateValue("Todos_Of~Alice", "required,store_id,max=128")
		assert.Nil(t, err, "case-sensitive store id")

		err = ValidateValue("todos of alice", "required,store_id,max=128")
		assert.Equal(t, "store_id", err.(Violation).Tag)

		err = ValidateValue("todos/alice", "required,store_id,max=128")
		assert.Equal(t, "store_id", err.(Violation).Tag)

		err = ValidateValue("", "required,store_id,max=128")
		assert.Equal(t, "required", err.(Violation).Tag)
	})

	t.Run("sequence number test", func(t *testing.T) {
		assert.Nil(t, ValidateValue("e3", "seqnum"))
		assert.Nil(t, ValidateValue("e3+1r2", "seqnum"))
		assert.Nil(t, ValidateValue("e3r1", "global_seqnum"))

		err := ValidateValue("e3+1", "global_seqnum")
		require.Error(t, err)
		assert.Equal(t, "global_seqnum", err.(Violation).Tag)

		err = ValidateValue("three", "seqnum")
		require.Error(t, err)
		assert.Contains(t, err.(Violation).Description, "sequence number")
	})

	t.Run("ValidateStruct test", func(t *testing.T) {
		type Event struct {
			Name string `validate:"required"`
			Seq  string `validate:"required,global_seqnum"`
		}
		type Request struct {
			StoreID string  `validate:"required,store_id"`
			Events  []Event `validate:"required,min=1,dive"`
		}

		err := ValidateStruct(Request{
			StoreID: "todos list",
			Events:  []Event{{Name: "todoCreated", Seq: "e1"}, {Seq: "e2+1"}},
		})
		structError := err.(*StructError)
		assert.Len(t, structError.Violations, 3, "request should be invalid")
		assert.Equal(t, "Request.Events[1].Name", structError.Violations[1].Field)

		assert.NoError(t, ValidateStruct(Request{
			StoreID: "todos",
			Events:  []Event{{Name: "todoCreated", Seq: "e1"}},
		}))
	})

	t.Run("custom rule test", func(t *testing.T) {
		// register custom rule tag and validation function
		_ = RegisterValidation("custom", func(v FieldLevel) bool {
			return v.Field().String() == "custom"
		})

		// custom error message for custom rule
		myError := errors.New("custom error")
		_ = RegisterTranslation("custom", myError.Error())

		// validate value
		err := ValidateValue("custom-invalid-value", "required,custom")
		assert.NotNil(t, err, "value is must 'custom' string")
		assert.Equal(t, myError.Error(), err.(Violation).Description)
	})
}
