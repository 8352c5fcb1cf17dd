// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package store

import (
	"sync/atomic"
)

// This file provides a small task execution framework for the commitment
// phase of a bulk update. Tasks form a forest mirroring the dirty part of
// the trie: each task may depend on multiple child tasks, but has at most
// one parent task depending on it. These properties are not verified.
//
// The intended usage is to
//   1) create a set of tasks, closed under dependencies, topologically
//      sorted such that no task appears before any of its dependencies
//   2) call [runTasks]() with the set of tasks
//
// The tasks are executed in parallel, respecting dependencies, and
// runTasks returns once all tasks have completed.

// task is a unit of work with a number of yet unfulfilled dependencies and
// an optional parent task to notify on completion.
type task struct {
	action          func()       // < the action to perform
	numDependencies atomic.Int32 // < number of dependencies before this task can run
	parentTask      *task        // < optional parent task to notify when done
}

// newTask creates a task with the given action, runnable once the given
// number of dependencies has completed.
func newTask(action func(), numDependencies int) *task {
	t := &task{action: action}
	t.numDependencies.Store(int32(numDependencies))
	return t
}

// run executes the task's action and returns the parent task if this
// completion made it ready to run, or nil.
func (t *task) run() *task {
	t.action()
	if t.parentTask == nil {
		return nil
	}
	if t.parentTask.numDependencies.Add(-1) != 0 {
		return nil // not ready yet
	}
	return t.parentTask
}

// runTasks executes the given tasks in parallel, respecting their
// dependencies. The list must contain every task needed to satisfy
// dependencies; missing dependencies lead to a deadlock.
func runTasks(tasks []*task) {
	// For small batches the parallelism overhead exceeds the gain.
	if len(tasks) < 20 {
		for _, task := range tasks {
			task.action()
		}
		return
	}

	const numWorkers = 7 // + this goroutine
	completedTasks := atomic.Uint32{}

	// Collect all tasks ready to run.
	workList := make([]*task, 0, len(tasks))
	for _, task := range tasks {
		if task.numDependencies.Load() == 0 {
			workList = append(workList, task)
		}
	}

	pos := atomic.Int32{}
	processTasks := func() {
		for {
			next := pos.Add(1) - 1
			if int(next) >= len(workList) {
				return
			}

			// Run this task and all tasks becoming ready as a result.
			task := workList[next]
			for task != nil {
				task = task.run()
				completedTasks.Add(1)
			}
		}
	}

	for range numWorkers {
		go processTasks()
	}

	// This goroutine helps with running tasks.
	processTasks()

	// The tasks are short and reasonably balanced, so a busy wait beats
	// the scheduling latency of a wait group here.
	for completedTasks.Load() < uint32(len(tasks)) {
	}
}
