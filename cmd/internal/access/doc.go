// Package access decides whether a caller may view or edit a page and manages
// the explicit grants that extend access beyond the owner and the public.
//
// Decisions follow a fixed precedence, first match wins:
//
//  1. owner: full access, drafts included
//  2. public and not a draft: view only
//  3. the single active grant for (page, caller): its flags, or a denial
//     with reason "access expired" once expires_at has passed
//  4. otherwise: denied, "no access"
//
// Only the original grantor may change or revoke a grant. At most one grant
// per (page, grantee) is active at a time; the store enforces it.
package access
