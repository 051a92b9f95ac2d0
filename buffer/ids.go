package buffer

// PageID identifies a page owned by the PageCache. INVALID_PAGE_ID is the
// reserved sentinel meaning "no page" (an empty tree's root, an
// unallocated child slot).
type PageID int32

// InvalidPageID is the reserved sentinel value for PageID, per the
// persisted page layout in spec.md §6.
const InvalidPageID PageID = -1

// FrameID identifies one of the replacer's tracked in-memory frames.
type FrameID int
