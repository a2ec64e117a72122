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

package ui

import "sync"

// RecordingRenderer keeps every view it is given.
type RecordingRenderer struct {
	mu    sync.Mutex
	Views []View
}

func (r *RecordingRenderer) Render(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Views = append(r.Views, v)
	return nil
}

func (r *RecordingRenderer) Last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Views) == 0 {
		return View{}
	}
	return r.Views[len(r.Views)-1]
}
