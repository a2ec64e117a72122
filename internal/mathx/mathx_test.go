/*
nimbus - Air quality badge controller
Copyright (C) 2024, lashy0

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(-3, 5, 100))
	assert.Equal(t, 100, Clamp(250, 5, 100))
	assert.Equal(t, 42, Clamp(42, 5, 100))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

func TestLerp(t *testing.T) {
	assert.Equal(t, 35, Lerp(3700, 3600, 3700, 20, 35))
	assert.Equal(t, 27, Lerp(3650, 3600, 3700, 20, 35))
	assert.Equal(t, 7, Lerp(7, 3, 3, 7, 9))
}
