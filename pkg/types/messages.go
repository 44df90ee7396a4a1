package types

// Client -> Server
// MarkCells:
//   updates: [{ index: number, cell: Cell }]
//
// StartSession: {}
// PauseSession: {}
// ResumeSession: {}
// EndSession: {}
// ClearError: {}
// Reconnect: {}

// Server -> Client
// StateSnapshot:
//   version: number
//   phase: "not_started" | "active" | "paused" | "ended" | "error"
//   completion_rate: number // marked cells / total cells
//   state:
//     current_state: Cell[]
//     current_player: number
//     version: number
//     last_update: ISO-8601 string
//   error: string // present while the session sits in the error phase
//
// Error:
//   error: string
//
// Cell:
//   text: string
//   colors: string[]
//   completed_by: string[] // player ids
//   blocked: boolean
//   is_marked: boolean
//   cell_id: string
