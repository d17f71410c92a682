// Copyright 2025 Poiesic Systems
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


// Package orchestrator coordinates many source executors.
//
// An Orchestrator is built once from the configured sources. Each enabled
// source is turned into a loader.Executor through a loader.Registry and
// keyed by "<type>:<key>". Runs come in three shapes:
//
//   - RunSingle streams one executor's documents lazily.
//   - RunAll drains every executor concurrently, admitting at most
//     maxConcurrent runs at a time through an ants pool.
//   - RunByType drains the executors of one source type sequentially.
//
// A failing executor never takes down its siblings: RunAll and RunByType
// map it to an empty document list, and RunAll only fails when every
// executor failed.
//
// Every completed run overwrites that executor's ExecutionStats. Runs
// interrupted by cancellation of the caller's context record nothing.
//
// # Basic Usage
//
//	registry := loader.NewRegistry()
//	registry.Register(core.SourceSlack, slackFactory)
//
//	orch, err := orchestrator.New(settings, settings.Sources,
//	    orchestrator.WithRegistry(registry))
//	if err != nil {
//	    return err
//	}
//	defer orch.Close()
//
//	results, err := orch.RunAll(ctx, core.DateRange{}, 3)
//
// # Health
//
// HealthCheck probes each executor with Ping when it implements
// loader.Pinger, and otherwise checks that its source type can still be
// built by the registry.
package orchestrator
