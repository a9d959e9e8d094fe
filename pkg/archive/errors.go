// Copyright 2026 OSIsoft, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import "errors"

var (
	// ErrPointNotFound is returned when a lookup-by-name does not resolve.
	// During provisioning this is the success path: it confirms the tag does
	// not pre-exist.
	ErrPointNotFound = errors.New("point not found")

	// ErrPointExists is returned when creating a point whose name is already
	// registered on the archive.
	ErrPointExists = errors.New("point already exists")
)
