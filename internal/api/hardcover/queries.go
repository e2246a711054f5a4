package hardcover

const editionFields = `
	id
	isbn_10
	isbn_13
	asin
	pages
	audio_seconds
	physical_format
	reading_format {
		format
	}`

const currentUserQuery = `
query CurrentUser {
	me {
		id
		username
	}
}`

const listLibraryQuery = `
query ListLibrary($offset: Int!, $limit: Int!) {
	me {
		user_books(offset: $offset, limit: $limit, order_by: {id: asc}) {
			id
			status_id
			edition_id
			book {
				id
				title
				contributions(where: {contributable_type: {_eq: "Book"}}) {
					author {
						name
					}
				}
				editions {` + editionFields + `
				}
			}
		}
	}
}`

const searchEditionFields = editionFields + `
	book {
		id
		title
		contributions(where: {contributable_type: {_eq: "Book"}}) {
			author {
				name
			}
		}
		editions {` + editionFields + `
		}
	}`

const findByISBNQuery = `
query FindEditionsByISBN($isbns: [String!]!) {
	editions(where: {_or: [{isbn_10: {_in: $isbns}}, {isbn_13: {_in: $isbns}}]}, limit: 10) {` + searchEditionFields + `
	}
}`

const findByASINQuery = `
query FindEditionsByASIN($asin: String!) {
	editions(where: {asin: {_eq: $asin}}, limit: 10) {` + searchEditionFields + `
	}
}`

const currentProgressQuery = `
query CurrentProgress($userBookId: Int!) {
	user_book_reads(where: {user_book_id: {_eq: $userBookId}}, order_by: {id: desc}, limit: 1) {
		id
		progress_pages
		progress_seconds
		edition_id
	}
	user_books(where: {id: {_eq: $userBookId}}) {
		id
		status_id
	}
}`

const insertUserBookMutation = `
mutation InsertUserBook($bookId: Int!, $statusId: Int!, $editionId: Int) {
	insert_user_book(object: {book_id: $bookId, status_id: $statusId, edition_id: $editionId}) {
		id
		error
	}
}`

const updateUserBookStatusMutation = `
mutation UpdateUserBookStatus($id: Int!, $statusId: Int!) {
	update_user_book(id: $id, object: {status_id: $statusId}) {
		id
		error
	}
}`

const updateReadPagesMutation = `
mutation UpdateReadPages($id: Int!, $value: Int!, $editionId: Int!) {
	update_user_book_read(id: $id, object: {progress_pages: $value, edition_id: $editionId}) {
		error
		user_book_read {
			id
		}
	}
}`

const updateReadSecondsMutation = `
mutation UpdateReadSeconds($id: Int!, $value: Int!, $editionId: Int!) {
	update_user_book_read(id: $id, object: {progress_seconds: $value, edition_id: $editionId}) {
		error
		user_book_read {
			id
		}
	}
}`

const insertReadPagesMutation = `
mutation InsertReadPages($userBookId: Int!, $value: Int!, $editionId: Int!, $startedAt: date) {
	insert_user_book_read(user_book_id: $userBookId, user_book_read: {progress_pages: $value, edition_id: $editionId, started_at: $startedAt}) {
		error
		user_book_read {
			id
		}
	}
}`

const insertReadSecondsMutation = `
mutation InsertReadSeconds($userBookId: Int!, $value: Int!, $editionId: Int!, $startedAt: date) {
	insert_user_book_read(user_book_id: $userBookId, user_book_read: {progress_seconds: $value, edition_id: $editionId, started_at: $startedAt}) {
		error
		user_book_read {
			id
		}
	}
}`
